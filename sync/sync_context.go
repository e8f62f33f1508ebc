package sync

// SyncContext holds shared sync configuration.
// It is immutable after construction and is shared by the Mantis and Jira
// fetchers so both sides of a sync see the same settings.
type SyncContext struct {
	Config Config

	// RecordRequests writes every request and response under recordingsPath,
	// one directory per remote system.
	RecordRequests bool
}

// NewSyncContext returns a SyncContext for the given config.
func NewSyncContext(config Config, recordRequests bool) *SyncContext {
	return &SyncContext{
		Config:         config,
		RecordRequests: recordRequests,
	}
}
