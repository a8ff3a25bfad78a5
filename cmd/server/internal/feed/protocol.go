package feed

import "encoding/json"

// Wire envelopes for the upstream streaming feed.

type authRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscriptionRequest struct {
	Action string   `json:"action"`
	Bars   []string `json:"bars"`
}

// controlMessage is one element of an inbound control array, e.g.
// [{"T":"success","msg":"authenticated"}].
type controlMessage struct {
	T   string `json:"T"`
	Msg string `json:"msg"`
}

// barsEnvelope carries a batch of bar objects, forwarded verbatim.
type barsEnvelope struct {
	Bars []json.RawMessage `json:"bars"`
}
