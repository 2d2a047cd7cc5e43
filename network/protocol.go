package network

// Message IDs carried in the packet header. Payloads are JSON.
const (
	MsgTypeHeartbeat = 1
	MsgTypeAuth      = 2
	MsgTypeError     = 9

	MsgTypeBetPlace    = 101
	MsgTypeBetResult   = 102
	MsgTypeUserBalance = 103

	MsgTypeMinesStart   = 201
	MsgTypeMinesReveal  = 202
	MsgTypeMinesCashout = 203
	MsgTypeMinesStarted = 204
	MsgTypeTileRevealed = 205
	MsgTypeMinesOver    = 206

	MsgTypeRoundInit    = 301
	MsgTypeRoundTimer   = 302
	MsgTypeBetConfirmed = 303
	MsgTypeRoundResult  = 304

	MsgTypeFeed = 401
)
