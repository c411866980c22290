package fluid

// SimTime tracks the simulation clock and the output/refinement cadence. An
// interval of 0 disables the corresponding action.
type SimTime struct {
	Current, End, DeltaT float64
	Step                 int

	OutputInterval     int
	RefinementInterval int
}

func NewSimTime(end, deltaT float64, outputInterval, refinementInterval int) SimTime {
	return SimTime{
		End:                end,
		DeltaT:             deltaT,
		OutputInterval:     outputInterval,
		RefinementInterval: refinementInterval,
	}
}

func (t *SimTime) Increment() {
	t.Current += t.DeltaT
	t.Step++
}

// IsEnd reports whether the clock has reached the end time. The half-step
// slack absorbs floating-point drift of the accumulating clock.
func (t *SimTime) IsEnd() bool {
	return t.Current >= t.End-t.DeltaT/2
}

// TimeToOutput and TimeToRefine fire every interval-th completed step. The
// run loop writes the initial state itself, so step 0 never fires.
func (t *SimTime) TimeToOutput() bool {
	return t.Step > 0 && t.OutputInterval > 0 && t.Step%t.OutputInterval == 0
}

func (t *SimTime) TimeToRefine() bool {
	return t.Step > 0 && t.RefinementInterval > 0 && t.Step%t.RefinementInterval == 0
}
