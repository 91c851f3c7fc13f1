package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"workday/internal/domain"
	"workday/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinedClient(h *Hub, id string, companyID, userID uint, admin bool) *Client {
	c := NewClient(id, 8)
	c.CompanyID = companyID
	c.UserID = userID
	c.IsAdmin = admin
	h.Join(c)
	return c
}

func receive(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case msg := <-c.Send:
		var f Frame
		require.NoError(t, json.Unmarshal(msg, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return Frame{}
	}
}

func TestHub_JoinRooms(t *testing.T) {
	h := NewHub()
	admin := joinedClient(h, "a", 1, 10, true)
	emp := joinedClient(h, "e", 1, 11, false)

	assert.Equal(t, 1, h.RoomSize(AdminRoom(1)))
	assert.Equal(t, 2, h.RoomSize(CompanyRoom(1)))
	assert.Equal(t, 1, h.RoomSize(UserRoom(1, 11)))

	emp.Close()
	assert.Equal(t, 1, h.RoomSize(CompanyRoom(1)))
	assert.Zero(t, h.RoomSize(UserRoom(1, 11)))

	admin.Close()
	admin.Close()
	assert.Zero(t, h.ClientCount())
}

func TestBroadcaster_TenantIsolation(t *testing.T) {
	h := NewHub()
	b := NewBroadcaster(h, nil, nil)
	require.NoError(t, b.Start(context.Background()))

	adminA := joinedClient(h, "a", 1, 10, true)
	adminB := joinedClient(h, "b", 2, 20, true)
	employeeA := joinedClient(h, "e", 1, 11, false)

	rec := &models.AttendanceRecord{ID: "r1", UserID: 21, CompanyID: 2}
	b.PublishAttendance(context.Background(), models.PresenceEvent{
		Action: domain.ActionClockIn, UserID: 21, CompanyID: 2, Timestamp: time.Now(),
	}, rec)

	f := receive(t, adminB)
	assert.Equal(t, domain.EventUserAttendanceUpdate, f.Event)
	var upd AttendanceUpdate
	require.NoError(t, json.Unmarshal(f.Data, &upd))
	assert.Equal(t, domain.ActionClockIn, upd.Action)
	assert.EqualValues(t, 21, upd.UserID)

	assert.Empty(t, adminA.Send)
	assert.Empty(t, employeeA.Send)
}

func TestBroadcaster_AttendanceReachesOwnUser(t *testing.T) {
	h := NewHub()
	b := NewBroadcaster(h, NewLocalBackplane(), nil)
	require.NoError(t, b.Start(context.Background()))

	me := joinedClient(h, "me", 1, 11, false)
	colleague := joinedClient(h, "c", 1, 12, false)

	b.PublishAttendance(context.Background(), models.PresenceEvent{
		Action: domain.ActionClockOut, UserID: 11, CompanyID: 1, Timestamp: time.Now(),
	}, &models.AttendanceRecord{ID: "r1", UserID: 11, CompanyID: 1, TotalHours: 8.5})

	f := receive(t, me)
	assert.Equal(t, domain.EventAttendanceUpdate, f.Event)
	assert.Empty(t, colleague.Send, "employees never see other users' attendance")
}

func TestHub_FullBufferDrops(t *testing.T) {
	h := NewHub()
	c := NewClient("slow", 1)
	c.CompanyID, c.UserID, c.IsAdmin = 1, 1, true
	h.Join(c)

	assert.Equal(t, 1, h.dispatch(AdminRoom(1), []byte("one"), ""))
	assert.Equal(t, 0, h.dispatch(AdminRoom(1), []byte("two"), ""))
	assert.Equal(t, 0, h.dispatch(AdminRoom(1), []byte("three"), "slow"))
}

func TestRedisBackplane_CrossInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newInstance := func() *Broadcaster {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		b := NewBroadcaster(NewHub(), NewRedisBackplane(rdb, "test", nil), nil)
		require.NoError(t, b.Start(ctx))
		t.Cleanup(func() { b.Close() })
		return b
	}
	a := newInstance()
	bInst := newInstance()

	remoteAdmin := joinedClient(bInst.Hub(), "remote", 1, 10, true)
	otherTenant := joinedClient(bInst.Hub(), "other", 2, 20, true)
	localAdmin := joinedClient(a.Hub(), "local", 1, 11, true)

	a.Emit(ctx, domain.EventUserOnline, map[string]uint{"userId": 12}, 1, "")

	assert.Equal(t, domain.EventUserOnline, receive(t, remoteAdmin).Event)
	assert.Equal(t, domain.EventUserOnline, receive(t, localAdmin).Event)
	assert.Never(t, func() bool { return len(otherTenant.Send) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestBroadcaster_SendToSkipsUnencodablePayload(t *testing.T) {
	b := NewBroadcaster(NewHub(), nil, nil)
	c := joinedClient(b.Hub(), "c1", 1, 7, false)

	assert.False(t, b.sendTo(c, "joined", map[string]interface{}{"bad": make(chan int)}))
	assert.Empty(t, c.Send)

	require.True(t, b.sendTo(c, "joined", joinAck{UserID: 7, CompanyID: 1, Rooms: []string{UserRoom(1, 7)}}))
	var f Frame
	require.NoError(t, json.Unmarshal(<-c.Send, &f))
	assert.Equal(t, "joined", f.Event)
	assert.JSONEq(t, `{"userId":7,"companyId":1,"isAdmin":false,"rooms":["user:1:7"]}`, string(f.Data))
}
