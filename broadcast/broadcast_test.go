package broadcast

import (
	"net"
	"testing"
	"time"

	"github.com/winzone/casino-server/network"
	"github.com/winzone/casino-server/session"
)

// MockConnection counts sends per connection.
type MockConnection struct {
	received []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.received = append(m.received, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func setup() (*session.Manager, *MockConnection, *MockConnection, *MockConnection) {
	manager := session.NewManager()

	diceConn := &MockConnection{}
	diceSess := session.NewSession("s1", "dice", diceConn)
	diceSess.SetUserID(100)
	manager.Add(diceSess)

	limboConn := &MockConnection{}
	limboSess := session.NewSession("s2", "limbo", limboConn)
	limboSess.SetUserID(200)
	manager.Add(limboSess)

	spectatorConn := &MockConnection{}
	manager.Add(session.NewSession("s3", "dice", spectatorConn))

	return manager, diceConn, limboConn, spectatorConn
}

func TestSessionBroadcaster_ToAll(t *testing.T) {
	manager, diceConn, limboConn, spectatorConn := setup()
	b := NewSessionBroadcaster(manager)

	if err := b.BroadcastToAll(network.MsgTypeFeed, []byte(`{}`)); err != nil {
		t.Fatalf("BroadcastToAll failed: %v", err)
	}

	for i, conn := range []*MockConnection{diceConn, limboConn, spectatorConn} {
		if len(conn.received) != 1 {
			t.Errorf("Connection %d expected 1 message, got %d", i, len(conn.received))
		}
	}
}

func TestSessionBroadcaster_ToGame(t *testing.T) {
	manager, diceConn, limboConn, spectatorConn := setup()
	b := NewSessionBroadcaster(manager)

	b.BroadcastToGame("dice", network.MsgTypeRoundTimer, []byte(`{}`))

	if len(diceConn.received) != 1 {
		t.Errorf("Dice session should receive the message")
	}
	if len(spectatorConn.received) != 1 {
		t.Errorf("Second dice session should receive the message")
	}
	if len(limboConn.received) != 0 {
		t.Errorf("Limbo session should not receive a dice broadcast")
	}
}

func TestSessionBroadcaster_ToUser(t *testing.T) {
	manager, diceConn, limboConn, _ := setup()
	b := NewSessionBroadcaster(manager)

	b.BroadcastToUser(100, network.MsgTypeUserBalance, []byte(`{"balance":500}`))

	if len(diceConn.received) != 1 {
		t.Errorf("User 100's session should receive the balance push")
	}
	if len(limboConn.received) != 0 {
		t.Errorf("User 200's session should not receive user 100's balance")
	}
}

func TestFeed_Thresholds(t *testing.T) {
	manager, _, _, _ := setup()
	b := NewSessionBroadcaster(manager)
	// Stake threshold Rs 1,000.00, multiplier threshold 10.00x.
	feed := NewFeed(b, 100000, 1000)

	cases := []struct {
		name        string
		event       FeedEvent
		interesting bool
	}{
		{"big stake loss", FeedEvent{Stake: 100000, Won: false}, true},
		{"big multiplier win", FeedEvent{Stake: 500, Won: true, MultiplierX100: 1500}, true},
		{"big multiplier loss", FeedEvent{Stake: 500, Won: false, MultiplierX100: 1500}, false},
		{"small bet small win", FeedEvent{Stake: 500, Won: true, MultiplierX100: 198}, false},
		{"exactly at stake threshold", FeedEvent{Stake: 100000, Won: false, MultiplierX100: 0}, true},
		{"exactly at multiplier threshold", FeedEvent{Stake: 1, Won: true, MultiplierX100: 1000}, true},
	}

	for _, tc := range cases {
		if got := feed.Interesting(&tc.event); got != tc.interesting {
			t.Errorf("%s: Interesting = %v, want %v", tc.name, got, tc.interesting)
		}
	}
}

func TestFeed_PublishOnlyInteresting(t *testing.T) {
	manager, diceConn, _, _ := setup()
	b := NewSessionBroadcaster(manager)
	feed := NewFeed(b, 100000, 1000)

	feed.Publish(&FeedEvent{Stake: 50, Won: false})
	if len(diceConn.received) != 0 {
		t.Error("A boring bet must not be published")
	}

	feed.Publish(&FeedEvent{Stake: 200000, Won: true, MultiplierX100: 198})
	if len(diceConn.received) != 1 {
		t.Errorf("An interesting bet must be published once, got %d", len(diceConn.received))
	}
}
