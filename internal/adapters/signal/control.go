package signal

// handlePing answers an application-level keepalive probe. Background browser
// tabs can miss protocol pings under throttling, so the client may probe
// liveness itself.
func (ctl *Controller) handlePing(c *wsConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(c, resp)
}
