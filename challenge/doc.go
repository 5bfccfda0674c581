// Package challenge stores single-use wallet challenges in Redis.
//
// A challenge is keyed by (tenant, lower-case address); issuing a new one for
// the same key overwrites the previous. [Store.Consume] reads and deletes the
// record in one Lua script, so two concurrent verifications of the same
// challenge cannot both observe it.
package challenge
