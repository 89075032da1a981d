package exception

import "errors"

// Session / coordinator errors
var (
	ErrSessionClosed   = errors.New("session: closed")
	ErrProtocol        = errors.New("session: protocol error")
	ErrConnectRefused  = errors.New("session: connect refused by server")
	ErrCompileInFlight = errors.New("compile: already in progress for graph")
	ErrAlreadyWatching = errors.New("watch: already watching key")
	ErrParse           = errors.New("parse error")
)
