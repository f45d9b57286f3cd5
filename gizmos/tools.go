// vi: sw=4 ts=4:

/*

	Mnemonic:	tools
	Abstract:	General functions that don't warrant their own file: request id
				generation and a request id validity check.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package gizmos

import (
	"math/rand"
	"strings"
)

const req_id_alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

/*
	Generate a fresh REQ_ID_LEN character request id drawn from
	[A-Za-z0-9]. Collision with a live or persisted id is the caller's
	concern (the registry re-rolls on collision).
*/
func Gen_req_id() string {
	b := make([]byte, REQ_ID_LEN)
	for i := range b {
		b[i] = req_id_alphabet[rand.Intn(len(req_id_alphabet))]
	}
	return string(b)
}

/*
	Returns true if s looks like a syntactically valid request id: exactly
	REQ_ID_LEN bytes, none of them NUL. The answering machine uses this to
	silently drop malformed packets rather than propagate an error.
*/
func Valid_req_id(s string) bool {
	if len(s) != REQ_ID_LEN {
		return false
	}
	return !strings.ContainsRune(s, 0)
}
