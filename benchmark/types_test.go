package benchmark

type Config struct {
	DSN  string
	Pool int
}

type Logger struct {
	Level string
}

type Database struct {
	Config *Config
	Logger *Logger
}

// Request is built per call and owns a Span and a Tx.
type Request struct {
	ID int
	DB *Database
}

type Span struct {
	Name   string
	Logger *Logger
}

type Tx struct {
	DB     *Database
	closed bool
}

func (t *Tx) Close() error {
	t.closed = true
	return nil
}

func (t *Tx) Shutdown() error {
	return t.Close()
}
