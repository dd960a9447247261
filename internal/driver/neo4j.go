package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

type Neo4jDriver struct {
	Driver   neo4j.DriverWithContext
	Database string

	logger *zap.Logger
}

func NewNeo4jDriver(uri, username, password, database string, logger *zap.Logger) (*Neo4jDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	logger.Info("connected to graph store", zap.String("uri", uri))
	return &Neo4jDriver{
		Driver:   driver,
		Database: database,
		logger:   logger.With(zap.String("component", "neo4j_driver")),
	}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(d.Database))
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX document_id IF NOT EXISTS FOR (d:Document) ON (d.id);",
		"CREATE INDEX document_project IF NOT EXISTS FOR (d:Document) ON (d.project_id);",
		"CREATE INDEX detail_id IF NOT EXISTS FOR (r:Detail) ON (r.id);",
		"CREATE INDEX gap_id IF NOT EXISTS FOR (g:Gap) ON (g.id);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist under a different name.
			d.logger.Warn("failed to create index", zap.String("query", q), zap.Error(err))
		}
	}

	return nil
}
