package master

// exchange transmits the process image and receives the returning frame within the receive timeout.
// It returns the actual working counter.
func (s *Session) exchange() (int, error) {
	inputs := s.image.NewInputFrames()

	s.busMu.Lock()
	err := s.transport.SendProcessData(s.image.OutputFrames())
	var wkc int
	if err == nil {
		wkc, err = s.transport.ReceiveProcessData(inputs, s.cfg.receiveTimeout)
	}
	s.busMu.Unlock()

	if err != nil {
		return 0, err
	}
	s.image.StoreInputs(inputs)

	return wkc, nil
}

// cyclicTask is one tick of the cyclic exchange loop.
func (s *Session) cyclicTask() bool {
	wkc, err := s.exchange()
	s.metrics.incCycleCount()

	if err != nil {
		s.metrics.incExchangeErrCount()
		s.logger.Debug("process data exchange failed", "error", err)
		wkc = 0
	}
	s.actualWKC.Store(int64(wkc))

	if wkc != s.expectedWKC {
		s.metrics.incWKCMismatchCount()
		if !s.wkcMismatch {
			s.logger.Warn("working counter mismatch", "expected", s.expectedWKC, "actual", wkc)
			s.wkcMismatch = true
		}
		if s.inOperation.Load() {
			s.checkNeeded.Store(true)
		}

		return true
	}

	if s.wkcMismatch {
		s.logger.Info("working counter restored", "wkc", wkc)
		s.wkcMismatch = false
	}

	return true
}
