// Package websocket runs WebSocket sessions on top of mux routes.
//
// A Socket tracks two states, one for each side of the session: the client
// state follows frames received from the peer, the application state
// follows calls made by the handler. Both start in Connecting.
//
//	Connecting --Accept--> Connected --Close / close frame--> Disconnected
//
// Every call made in the wrong state fails immediately with an error
// wrapping ErrInvalidState; no call is silently ignored.
//
// Handler Example:
//
//	r.Handle("/ws/echo", websocket.Handler(func(s *websocket.Socket) error {
//	    if err := s.Accept(s.Context(), ""); err != nil {
//	        return err
//	    }
//	    for {
//	        msg, err := s.ReceiveText(s.Context())
//	        if err != nil {
//	            if websocket.IsCloseError(err, websocket.StatusNormalClosure) {
//	                return nil
//	            }
//	            return err
//	        }
//	        if err := s.SendText(s.Context(), msg); err != nil {
//	            return err
//	        }
//	    }
//	}, websocket.Options{}))
//
// When the handler returns, a session that is still connected is closed
// with 1000 (normal closure) on a nil result and 1011 (internal error)
// otherwise. Requests that do not ask for an upgrade are answered with
// 426 Upgrade Required.
//
// Framing, masking, ping handling and permessage-deflate are delegated to
// github.com/coder/websocket.
package websocket
