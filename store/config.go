package store

// Config holds configuration for the Store.
type Config struct {
	// TableName is the single table holding every entity.
	// Default: "spacecat-services-data"
	TableName string

	// Region is the AWS region used by NewClient. Empty uses the SDK's
	// default resolution chain.
	Region string

	// Endpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	Endpoint string

	// PageSize is the Limit sent with every Query page.
	// Default: 100
	// Max: 1000
	PageSize int32

	// ConsistentRead enables strongly consistent reads for Get and
	// primary-index queries. GSIs never support it.
	ConsistentRead bool
}

// DefaultConfig returns the defaults used by the shared data service.
func DefaultConfig() Config {
	return Config{
		TableName: "spacecat-services-data",
		PageSize:  100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "spacecat-services-data"
	}
	if c.PageSize < 1 {
		c.PageSize = 100
	}
	if c.PageSize > 1000 {
		c.PageSize = 1000
	}
}
