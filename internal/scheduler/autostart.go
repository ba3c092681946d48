package scheduler

import (
	"context"
	"log"
)

// AutoStart queries every enabled Instance and starts its Worker, per
// spec.md §4.6's boot-time auto-start component.
func AutoStart(ctx context.Context, m *Manager) error {
	instances, err := m.store.ListEnabledInstances(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		log.Printf("scheduler: auto-starting instance %s", inst.InstanceID)
		m.Start(inst.InstanceID)
	}
	return nil
}
