// Package packet defines the HMC request/response wire records (§3 "HMC
// request packet" / "HMC response packet") and a pooled allocator for
// them. Packets are heap-allocated records uniquely owned by whichever
// queue currently holds them (§9 "Packet ownership"): moving a packet
// between crossbar stages is a pointer hand-off, never a copy, so Get/Put
// is the only place allocation happens.
package packet

import (
	"sync"

	"github.com/rcolburn/memsim/internal/constants"
)

// Request is one HMC request packet in flight through the link/quad/vault
// crossbar (§3).
type Request struct {
	Kind constants.ReqKind

	A1, A2, A3 uint64
	ReqID      uint64

	Link  int
	Quad  int
	Vault int

	Flits    int
	IsRead   bool
	IsWrite  bool
	ExitTime uint64
}

// Response is one HMC response packet (§3). RespID equals the originating
// request's A1 for plain R/W (used as the resp_lookup key, §9 open
// question 1); CiM completions never produce a Response (§9 design notes:
// their flit cost is zero and they are routed directly by VaultCallback).
type Response struct {
	RespID uint64
	Kind   constants.RespKind

	Link  int
	Quad  int
	Flits int

	ExitTime uint64
}

var requestPool = sync.Pool{New: func() any { return new(Request) }}
var responsePool = sync.Pool{New: func() any { return new(Response) }}

// GetRequest returns a zeroed Request from the pool.
func GetRequest() *Request {
	r := requestPool.Get().(*Request)
	*r = Request{}
	return r
}

// PutRequest returns a Request to the pool. The caller must not retain any
// reference to req afterward — ownership has moved (§9).
func PutRequest(req *Request) {
	if req == nil {
		return
	}
	requestPool.Put(req)
}

// GetResponse returns a zeroed Response from the pool.
func GetResponse() *Response {
	r := responsePool.Get().(*Response)
	*r = Response{}
	return r
}

// PutResponse returns a Response to the pool.
func PutResponse(resp *Response) {
	if resp == nil {
		return
	}
	responsePool.Put(resp)
}

// QuadOf derives the destination quadrant from a vault index: quad = vault
// mod 4 (§3).
func QuadOf(vault int) int {
	return vault % 4
}
