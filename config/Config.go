package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig       RedisStorageConfig
	HttpPort          int
	StorageType       StorageType
	SchedulerInterval int
	DirectoryUrl      string
	DispatchUrl       string
	DispatchToken     string
	BackupDir         string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	Password  string
	PoolSize  int
}
