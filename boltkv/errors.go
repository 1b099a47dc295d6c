package boltkv

import "errors"

// errChannelFull is wrapped as a Custom provider error when the bounded
// request channel has no free slot for a new request.
var errChannelFull = errors.New("request channel is full")
