package wal

import (
	"sync"
	"time"
)

// syncer applies the durability mode after each commit. All methods except
// run expect the WAL mutex to be held.
type syncer struct {
	mode     DurabilityMode
	maxOps   int
	pending  int
	head     uint64 // highest committed sequence number
	durable  uint64 // highest sequence number known to be on disk
	cond     *sync.Cond
	ticker   *time.Ticker
	stop     chan struct{}
	done     sync.WaitGroup
	syncFile func() error
}

func newSyncer(mu *sync.Mutex, opts Options, syncFile func() error) *syncer {
	s := &syncer{
		mode:     opts.DurabilityMode,
		maxOps:   opts.GroupCommitMaxOps,
		cond:     sync.NewCond(mu),
		syncFile: syncFile,
	}
	if s.mode == DurabilityGroupCommit && opts.GroupCommitInterval > 0 {
		s.ticker = time.NewTicker(opts.GroupCommitInterval)
		s.stop = make(chan struct{})
		s.done.Add(1)
		go s.run(mu)
	}
	return s
}

// committed makes seq durable according to the mode. In group commit mode
// the caller waits for the next batch fsync unless it fills the batch.
func (s *syncer) committed(seq uint64) error {
	s.head = seq
	switch s.mode {
	case DurabilitySync:
		if err := s.syncFile(); err != nil {
			return err
		}
		s.durable = seq
		return nil
	case DurabilityGroupCommit:
		s.pending++
		if s.pending >= s.maxOps || s.ticker == nil {
			return s.flushLocked(seq)
		}
		for s.durable < seq {
			s.cond.Wait()
		}
		return nil
	default:
		return nil
	}
}

func (s *syncer) flushLocked(seq uint64) error {
	if s.pending == 0 {
		return nil
	}
	if err := s.syncFile(); err != nil {
		return err
	}
	s.pending = 0
	s.durable = seq
	s.cond.Broadcast()
	return nil
}

func (s *syncer) run(mu *sync.Mutex) {
	defer s.done.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			mu.Lock()
			_ = s.flushLocked(s.head)
			mu.Unlock()
		}
	}
}

// shutdown stops the worker. The caller must not hold the WAL mutex.
func (s *syncer) shutdown() {
	if s.ticker == nil {
		return
	}
	close(s.stop)
	s.done.Wait()
	s.ticker.Stop()
	s.ticker = nil
}

// reset forgets sequence numbers after the log restarts at zero.
func (s *syncer) reset() {
	s.pending, s.head, s.durable = 0, 0, 0
}
