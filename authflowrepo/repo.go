// Package authflowrepo stores the transient, flow-scoped parameters of one
// login attempt, keyed by the state parameter so the callback exchange can
// retrieve the code verifier. Entries live only until the flow completes, is
// abandoned, or the flow timeout elapses.
package authflowrepo

import "time"

type FlowState struct {
	CodeVerifier string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, flowState *FlowState) error
	Get(state string) (*FlowState, error)
	Delete(state string) error
}
