package engine

import (
	"fmt"
	"time"

	"github.com/sendloop/journey/directory"
	"github.com/sendloop/journey/dispatch"
	"github.com/sendloop/journey/persistence/memory"
)

type fakeDirectory struct {
	customers map[string]*directory.Customer
	orders    map[string][]directory.Order
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		customers: make(map[string]*directory.Customer),
		orders:    make(map[string][]directory.Order),
	}
}

func (f *fakeDirectory) GetCustomer(id string) (*directory.Customer, error) {
	return f.customers[id], nil
}

func (f *fakeDirectory) GetCustomerOrders(id string) ([]directory.Order, error) {
	return f.orders[id], nil
}

type fakeMutator struct {
	tags  map[string][]string
	props map[string]map[string]string
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{
		tags:  make(map[string][]string),
		props: make(map[string]map[string]string),
	}
}

func (f *fakeMutator) AddTag(customerId string, tag string) error {
	f.tags[customerId] = append(f.tags[customerId], tag)
	return nil
}

func (f *fakeMutator) UpdateMetafield(customerId string, key string, value string) error {
	if f.props[customerId] == nil {
		f.props[customerId] = make(map[string]string)
	}
	f.props[customerId][key] = value
	return nil
}

// fakeSender fails the first failBefore sends, then succeeds.
type fakeSender struct {
	failBefore int
	calls      int
	sent       []string
}

func (f *fakeSender) SendTemplatedMessage(to string, template string, language string, components map[string]string) (*dispatch.SendResult, error) {
	f.calls++
	if f.calls <= f.failBefore {
		return &dispatch.SendResult{Success: false, Error: "upstream unavailable"}, nil
	}
	f.sent = append(f.sent, template)
	return &dispatch.SendResult{Success: true, MessageId: fmt.Sprintf("msg-%d", f.calls)}, nil
}

func (f *fakeSender) Configured() bool { return true }

type testHarness struct {
	engine    *Engine
	store     *memory.Store
	directory *fakeDirectory
	mutator   *fakeMutator
	sender    *fakeSender
}

func newTestHarness(now time.Time) *testHarness {
	store := memory.NewStore("")
	dir := newFakeDirectory()
	mutator := newFakeMutator()
	sender := &fakeSender{}
	eng := New(store, dir, mutator, sender)
	if !now.IsZero() {
		eng.now = func() time.Time { return now }
	}
	return &testHarness{engine: eng, store: store, directory: dir, mutator: mutator, sender: sender}
}
