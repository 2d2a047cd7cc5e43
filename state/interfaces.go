// state/interfaces.go
package state

// Player is the minimal view of a connected player a phase needs. A
// session satisfies it. Defined here to break the import cycle between
// the round and state packages.
type Player interface {
	GetID() string
	GetUserID() int64
}
