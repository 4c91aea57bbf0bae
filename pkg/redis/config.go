package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the database. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`                      // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`                     // RetryInterval is the interval between retry attempts. It should be in the format "5s" for 5
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`                   // ConnectTimeout is the timeout for connecting to the database. It should be in the format "30s" for 30 seconds.

	KeyPrefix      string `env:"REDIS_SESSION_PREFIX" envDefault:"session:"`        // KeyPrefix namespaces session keys.
	EventChannel   string `env:"REDIS_SESSION_CHANNEL" envDefault:"session:events"` // EventChannel carries created/removed notifications between nodes.
	KeyspaceEvents bool   `env:"REDIS_KEYSPACE_EVENTS" envDefault:"false"`          // KeyspaceEvents subscribes to expiry notifications; the server needs notify-keyspace-events "Ex".
	LocalCacheSize int    `env:"REDIS_SESSION_LOCAL_CACHE_SIZE" envDefault:"10000"` // LocalCacheSize bounds the decoded sessions kept per node.
}
