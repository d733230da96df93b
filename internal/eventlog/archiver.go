package eventlog

// ArchiverHook observes the entry ranges a trim removes. An implementation
// can mirror trimmed ranges to colder storage or count reclaimed entries;
// the log itself never depends on what the hook does.
type ArchiverHook interface {
	EmitTrimRange(namespace, topic string, partition uint32, minSeq, maxSeq uint64)
}

// noopArchiver is installed at OpenLog until something more useful replaces it.
type noopArchiver struct{}

func (noopArchiver) EmitTrimRange(string, string, uint32, uint64, uint64) {}
