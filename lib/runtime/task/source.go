package task

import (
	"tablestream/lib/log"
	"tablestream/stream"

	"github.com/pkg/errors"
)

//Checkpoint loads and persists component snapshots.
type Checkpoint interface {
	stream.Committer
	Load(name string) ([]byte, bool, error)
}

type SourceTask struct {
	stream.Source
	Ctx      stream.Context
	EmitNext stream.EmitNext
	Name     string
	//Checkpoint is nil when snapshots are disabled
	Checkpoint Checkpoint
}

//Start open the source and restore its last snapshot.
func (s *SourceTask) Start() error {
	if s.Checkpoint != nil {
		s.Ctx.Store(stream.CommitterKey, s.Checkpoint)
	}
	if err := s.Open(s.Ctx); err != nil {
		return err
	}
	if err := s.restore(); err != nil {
		if cErr := s.Close(); cErr != nil {
			log.Ctx(s.Ctx).Warnw("failed to close source.", "task", s.Name, "err", cErr)
		}
		return err
	}
	return nil
}

func (s *SourceTask) restore() error {
	stateful, ok := s.Source.(stream.Stateful)
	if !ok || s.Checkpoint == nil {
		return nil
	}
	snapshot, found, err := s.Checkpoint.Load(s.Name)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	log.Ctx(s.Ctx).Infow("restoring snapshot.", "task", s.Name, "size", len(snapshot))
	return errors.WithMessage(stateful.Restore(snapshot), "can't restore snapshot")
}

//Run collect until the source is done, then close it and save its snapshot, also on failure.
func (s *SourceTask) Run() (err error) {
	defer func() {
		if cErr := s.Close(); cErr != nil && err == nil {
			err = cErr
		}
		if sErr := s.snapshot(); sErr != nil && err == nil {
			err = sErr
		}
	}()
	return s.Collect(s.EmitNext)
}

func (s *SourceTask) snapshot() error {
	stateful, ok := s.Source.(stream.Stateful)
	if !ok || s.Checkpoint == nil {
		return nil
	}
	snapshot, err := stateful.Snapshot()
	if err != nil {
		return errors.WithMessage(err, "can't snapshot source")
	}
	return s.Checkpoint.Commit(s.Name, snapshot)
}
