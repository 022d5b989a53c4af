// Package idle tracks outstanding activity and fires a one-shot
// cancellation signal once nothing has been outstanding for a timeout.
//
//	trig := idle.New(10*time.Minute, idle.WithLogger(logger))
//	tok := trig.Busy()
//	defer trig.Idle(tok)
//
// Once fired, the trigger never arms another timer.
package idle
