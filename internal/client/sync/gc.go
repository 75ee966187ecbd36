package sync

import "context"

// GCResult reports what a garbage collection sweep removed.
type GCResult struct {
	Operations  int
	Evidence    int
	AuditEvents int
}

// GC deletes terminal synced records from every collection. Failed
// operations and conflict records are never swept: they are the only durable
// record of a lost or contested write and require explicit operator action.
func (d *Driver) GC(ctx context.Context) (*GCResult, error) {
	result := &GCResult{}

	removed, err := d.queue.PurgeSynced(ctx)
	if err != nil {
		return nil, err
	}
	result.Operations = removed

	removed, err = d.evidence.PurgeSynced(ctx)
	if err != nil {
		return nil, err
	}
	result.Evidence = removed

	removed, err = d.audit.PurgeSynced(ctx)
	if err != nil {
		return nil, err
	}
	result.AuditEvents = removed

	d.logger.Info("Garbage collection completed",
		"operations", result.Operations,
		"evidence", result.Evidence,
		"audit_events", result.AuditEvents)

	return result, nil
}
