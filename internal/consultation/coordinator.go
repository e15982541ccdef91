package consultation

import (
	"sync"

	"github.com/google/uuid"

	"github.com/medconnect/telemed/internal/models"
)

// State is the lifecycle of one consultation session.
type State string

const (
	StateIdle      State = "idle"
	StateJoined    State = "joined"
	StateReady     State = "ready"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

type Participant struct {
	UserID   uuid.UUID
	Role     models.Role
	ClientID uuid.UUID
}

// session is the ephemeral per-appointment record of who is present.
// Created on first join, discarded when the last participant leaves or the
// call ends. Never persisted.
type session struct {
	state        State
	participants map[uuid.UUID]Participant
}

// Transition is the effect set of one lifecycle event. The coordinator only
// mutates its own session map; broadcasts and the appointment-completion
// side effect are the caller's job.
type Transition struct {
	AppointmentID uuid.UUID
	State         State
	Participant   Participant

	// NotifyJoined is set when a second distinct participant arrives; the
	// clients use it as the cue to start call signaling.
	NotifyJoined bool
	// NotifyLeft is set when a participant leaves while another remains.
	NotifyLeft bool
	// CallEnded is set by End regardless of remaining participants.
	CallEnded bool
	// CompleteAppointment is set only for a doctor-initiated end.
	CompleteAppointment bool
}

// Coordinator owns the appointment -> session map. It is a dependency-
// injected instance, not a package singleton, so tests build isolated ones.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewCoordinator() *Coordinator {
	return &Coordinator{sessions: make(map[uuid.UUID]*session)}
}

// Join records a participant. An unknown appointment id starts a fresh
// session; the coordinator does not validate appointment existence. A
// second tab of the same user replaces the stored connection without a
// notification.
func (c *Coordinator) Join(appointmentID, userID uuid.UUID, role models.Role, clientID uuid.UUID) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[appointmentID]
	if !ok {
		s = &session{state: StateIdle, participants: make(map[uuid.UUID]Participant)}
		c.sessions[appointmentID] = s
	}

	p := Participant{UserID: userID, Role: role, ClientID: clientID}
	_, rejoined := s.participants[userID]
	s.participants[userID] = p

	if !rejoined {
		switch len(s.participants) {
		case 1:
			s.state = StateJoined
		case 2:
			s.state = StateReady
		}
	}

	return Transition{
		AppointmentID: appointmentID,
		State:         s.state,
		Participant:   p,
		NotifyJoined:  !rejoined && len(s.participants) == 2,
	}
}

// MarkConnected moves a ready session to connected once the clients report
// media signaling has been exchanged.
func (c *Coordinator) MarkConnected(appointmentID uuid.UUID) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[appointmentID]
	if !ok {
		return Transition{AppointmentID: appointmentID, State: StateIdle}
	}

	if s.state == StateReady {
		s.state = StateConnected
	}

	return Transition{AppointmentID: appointmentID, State: s.state}
}

// Leave removes a participant. An empty session is discarded; if one
// participant remains, the caller broadcasts participant_left.
func (c *Coordinator) Leave(appointmentID, userID uuid.UUID) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.leaveLocked(appointmentID, userID)
}

func (c *Coordinator) leaveLocked(appointmentID, userID uuid.UUID) Transition {
	s, ok := c.sessions[appointmentID]
	if !ok {
		return Transition{AppointmentID: appointmentID, State: StateIdle}
	}

	p, present := s.participants[userID]
	if !present {
		return Transition{AppointmentID: appointmentID, State: s.state}
	}

	delete(s.participants, userID)

	if len(s.participants) == 0 {
		delete(c.sessions, appointmentID)
		return Transition{AppointmentID: appointmentID, State: StateEnded, Participant: p}
	}

	s.state = StateJoined
	return Transition{
		AppointmentID: appointmentID,
		State:         s.state,
		Participant:   p,
		NotifyLeft:    true,
	}
}

// End closes the call and discards the session regardless of remaining
// participants. Only a doctor-initiated end marks the appointment
// completed; a patient leaving does not.
func (c *Coordinator) End(appointmentID, userID uuid.UUID, role models.Role) Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, appointmentID)

	return Transition{
		AppointmentID:       appointmentID,
		State:               StateEnded,
		Participant:         Participant{UserID: userID, Role: role},
		CallEnded:           true,
		CompleteAppointment: role == models.RoleDoctor,
	}
}

// Disconnect removes the connection from every session it participates in.
// Called unconditionally when a connection closes.
func (c *Coordinator) Disconnect(clientID uuid.UUID) []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	var transitions []Transition
	for appointmentID, s := range c.sessions {
		for userID, p := range s.participants {
			if p.ClientID == clientID {
				transitions = append(transitions, c.leaveLocked(appointmentID, userID))
				break
			}
		}
	}
	return transitions
}

// SessionState reports the current state of an appointment's session,
// StateIdle if none exists.
func (c *Coordinator) SessionState(appointmentID uuid.UUID) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[appointmentID]
	if !ok {
		return StateIdle
	}
	return s.state
}

// Participants returns the users currently present in a session.
func (c *Coordinator) Participants(appointmentID uuid.UUID) []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[appointmentID]
	if !ok {
		return nil
	}

	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out
}
