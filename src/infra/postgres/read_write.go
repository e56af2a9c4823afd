package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Config holds the connection settings shared by the read replica and the primary.
type Config struct {
	ReadHost       string
	WriteHost      string
	ReadPort       string
	WritePort      string
	DBName         string
	User           string
	Password       string
	MaxConnections int
}

// ReadWriteClient separa o pool de leitura (réplica) do pool de escrita (primário).
// Keyset pages are served from the replica; every mutation goes to the primary.
type ReadWriteClient struct {
	readPool  *pgxpool.Pool
	writePool *pgxpool.Pool
}

func NewReadWriteClient(cfg Config) (*ReadWriteClient, error) {
	readPool, err := NewPostgresClient(cfg.ReadHost, cfg.ReadPort, cfg.DBName, cfg.User, cfg.Password, cfg.MaxConnections)
	if err != nil {
		return nil, err
	}

	writePool, err := NewPostgresClient(cfg.WriteHost, cfg.WritePort, cfg.DBName, cfg.User, cfg.Password, cfg.MaxConnections)
	if err != nil {
		readPool.Close()
		return nil, err
	}

	return &ReadWriteClient{
		readPool:  readPool,
		writePool: writePool,
	}, nil
}

func (rwc *ReadWriteClient) GetReadPool() *pgxpool.Pool {
	return rwc.readPool
}

func (rwc *ReadWriteClient) GetWritePool() *pgxpool.Pool {
	return rwc.writePool
}

func (rwc *ReadWriteClient) Close() {
	rwc.readPool.Close()
	rwc.writePool.Close()
}
