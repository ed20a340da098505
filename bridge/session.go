package bridge

// Session identifies where and how a request runs: the engine that completes
// it, the channel that carries it, the unit id to address and how long to wait
// for a response.
//
// A Session owns nothing. It is read afresh by every request, so changing a
// field (or building a new Session) affects only later calls.
type Session struct {
	Runtime   RuntimeHandle
	Channel   ChannelHandle
	TimeoutMs uint32
	UnitID    uint8
}

// BuildSession assembles a Session. No validation or I/O happens here; bad
// handles surface when a request is made with the session.
func BuildSession(rt RuntimeHandle, ch ChannelHandle, unitID uint8, timeoutMs uint32) Session {
	return Session{
		Runtime:   rt,
		Channel:   ch,
		UnitID:    unitID,
		TimeoutMs: timeoutMs,
	}
}
