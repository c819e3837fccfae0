package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/sendloop/journey/directory"
	"github.com/sendloop/journey/model"
	"github.com/sendloop/journey/util"
)

const LOGIC_ALL string = "all"
const LOGIC_ANY string = "any"

const OP_EQUALS string = "equals"
const OP_NOT_EQUALS string = "not_equals"
const OP_CONTAINS string = "contains"
const OP_NOT_CONTAINS string = "not_contains"
const OP_STARTS_WITH string = "starts_with"
const OP_GREATER_THAN string = "greater_than"
const OP_LESS_THAN string = "less_than"
const OP_BETWEEN string = "between"
const OP_IS_SET string = "is_set"
const OP_IS_NOT_SET string = "is_not_set"

// Context carries the objects condition fields resolve against. Customer
// is fetched lazily from the directory when only CustomerId is set.
type Context struct {
	CustomerId   string
	Customer     map[string]any
	Order        map[string]any
	Product      map[string]any
	TriggerEvent map[string]any
}

type Evaluator struct {
	directory directory.Service
}

func NewEvaluator(dir directory.Service) *Evaluator {
	return &Evaluator{directory: dir}
}

// Evaluate combines per-condition results under the given logic. An
// empty condition list means no filter and evaluates true.
func (ev *Evaluator) Evaluate(conditions []model.Condition, ctx *Context, logic string) bool {
	if len(conditions) == 0 {
		return true
	}
	anyLogic := strings.EqualFold(logic, LOGIC_ANY)
	for _, cond := range conditions {
		result := ev.evaluateOne(cond, ctx)
		if anyLogic && result {
			return true
		}
		if !anyLogic && !result {
			return false
		}
	}
	return !anyLogic
}

func (ev *Evaluator) evaluateOne(cond model.Condition, ctx *Context) bool {
	actual, present := ev.resolve(ctx, cond.Source, cond.Field)
	switch cond.Operator {
	case OP_IS_NOT_SET:
		return !present || isEmpty(actual)
	case OP_IS_SET:
		return present && !isEmpty(actual)
	}
	// missing values fail every remaining comparison
	if !present || actual == nil {
		return false
	}
	switch cond.Operator {
	case OP_EQUALS:
		return looseEquals(actual, cond.Value)
	case OP_NOT_EQUALS:
		return !looseEquals(actual, cond.Value)
	case OP_CONTAINS:
		return strings.Contains(lower(actual), lower(cond.Value))
	case OP_NOT_CONTAINS:
		return !strings.Contains(lower(actual), lower(cond.Value))
	case OP_STARTS_WITH:
		return strings.HasPrefix(lower(actual), lower(cond.Value))
	case OP_GREATER_THAN:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case OP_LESS_THAN:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case OP_BETWEEN:
		bounds, ok := cond.Value.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		a, aok := toFloat(actual)
		lo, lok := toFloat(bounds[0])
		hi, hok := toFloat(bounds[1])
		return aok && lok && hok && a >= lo && a <= hi
	}
	return false
}

func (ev *Evaluator) resolve(ctx *Context, source string, field string) (any, bool) {
	var obj map[string]any
	switch source {
	case "customer":
		if ctx.Customer == nil && len(ctx.CustomerId) > 0 && ev.directory != nil {
			customer, err := ev.directory.GetCustomer(ctx.CustomerId)
			if err == nil && customer != nil {
				ctx.Customer = util.ToMap(customer)
			}
		}
		obj = ctx.Customer
	case "order":
		obj = ctx.Order
	case "product":
		obj = ctx.Product
	case "event", "trigger":
		obj = ctx.TriggerEvent
	default:
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	value, err := jsonpath.JsonPathLookup(obj, "$."+field)
	if err != nil {
		return nil, false
	}
	return value, true
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	return len(strings.TrimSpace(fmt.Sprint(v))) == 0
}

func looseEquals(a any, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return strings.EqualFold(fmt.Sprint(a), fmt.Sprint(b))
}

func lower(v any) string {
	return strings.ToLower(fmt.Sprint(v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
