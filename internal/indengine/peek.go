package indengine

import "indstream/internal/model"

// peek computes live values for a forming bar. Streams that have not seen
// a confirmed bar yet produce nothing.
func (svc *Service) peek(b model.Bar) {
	frame, ok := svc.engine.ProcessPeek(b)
	if !ok {
		return
	}
	svc.prom.LiveBarsTotal.Inc()
	svc.frameCh <- frame
}
