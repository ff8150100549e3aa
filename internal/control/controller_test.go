package control

import (
	"testing"
	"time"
)

func TestInitialState(t *testing.T) {
	s := InitialState()
	if s.Mode != ModePassive {
		t.Errorf("expected PASSIVE, got %s", s.Mode)
	}
	if s.SafeStreak != 0 {
		t.Errorf("expected streak 0, got %d", s.SafeStreak)
	}
}

func TestCommandWire(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandEscalate, "MODE_DISASTER"},
		{CommandDeescalate, "MODE_SAFE"},
		{Command("BOGUS"), ""},
	}
	for _, tt := range tests {
		if got := tt.cmd.Wire(); got != tt.want {
			t.Errorf("%s.Wire() = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestNextPassive(t *testing.T) {
	tests := []struct {
		name     string
		risk     float64
		wantMode Mode
		wantCmd  bool
	}{
		{"zero", 0.0, ModePassive, false},
		{"low", 0.1, ModePassive, false},
		{"neutral band", 0.5, ModePassive, false},
		{"exactly escalate threshold", 0.7, ModePassive, false},
		{"just above threshold", 0.7001, ModeActive, true},
		{"high", 0.95, ModeActive, true},
		{"above one", 1.5, ModeActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := Next(InitialState(), Reading{Risk: tt.risk})
			if next.Mode != tt.wantMode {
				t.Errorf("mode: got %s, want %s", next.Mode, tt.wantMode)
			}
			if next.SafeStreak != 0 {
				t.Errorf("streak: got %d, want 0", next.SafeStreak)
			}
			if (cmd != nil) != tt.wantCmd {
				t.Fatalf("command: got %v, want present=%v", cmd, tt.wantCmd)
			}
			if cmd != nil && *cmd != CommandEscalate {
				t.Errorf("expected ESCALATE, got %s", *cmd)
			}
		})
	}
}

func TestNextActive(t *testing.T) {
	tests := []struct {
		name       string
		streak     int
		risk       float64
		wantMode   Mode
		wantStreak int
		wantCmd    *Command
	}{
		{"safe signal increments", 0, 0.1, ModeActive, 1, nil},
		{"exactly deescalate threshold resets", 4, 0.3, ModeActive, 0, nil},
		{"neutral band resets", 5, 0.5, ModeActive, 0, nil},
		{"danger band resets", 3, 0.9, ModeActive, 0, nil},
		{"ninth safe signal", 8, 0.2, ModeActive, 9, nil},
		{"tenth safe signal deescalates", 9, 0.2, ModePassive, 0, commandPtr(CommandDeescalate)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := Next(State{Mode: ModeActive, SafeStreak: tt.streak}, Reading{Risk: tt.risk})
			if next.Mode != tt.wantMode {
				t.Errorf("mode: got %s, want %s", next.Mode, tt.wantMode)
			}
			if next.SafeStreak != tt.wantStreak {
				t.Errorf("streak: got %d, want %d", next.SafeStreak, tt.wantStreak)
			}
			switch {
			case tt.wantCmd == nil && cmd != nil:
				t.Errorf("expected no command, got %s", *cmd)
			case tt.wantCmd != nil && cmd == nil:
				t.Errorf("expected %s, got none", *tt.wantCmd)
			case tt.wantCmd != nil && *cmd != *tt.wantCmd:
				t.Errorf("expected %s, got %s", *tt.wantCmd, *cmd)
			}
		})
	}
}

func TestEscalateSequence(t *testing.T) {
	s := InitialState()
	risks := []float64{0.1, 0.2, 0.75}
	var cmds []*Command
	for _, r := range risks {
		var cmd *Command
		s, cmd = Next(s, Reading{Risk: r})
		cmds = append(cmds, cmd)
	}

	if cmds[0] != nil || cmds[1] != nil {
		t.Error("expected no command after first two readings")
	}
	if cmds[2] == nil || *cmds[2] != CommandEscalate {
		t.Fatalf("expected ESCALATE after third reading, got %v", cmds[2])
	}
	if s.Mode != ModeActive {
		t.Errorf("expected ACTIVE, got %s", s.Mode)
	}
}

func TestEscalateIdempotent(t *testing.T) {
	s, cmd := Next(InitialState(), Reading{Risk: 0.9})
	if cmd == nil {
		t.Fatal("expected ESCALATE")
	}

	for i := 0; i < 20; i++ {
		next, cmd := Next(s, Reading{Risk: 0.9})
		if cmd != nil {
			t.Fatalf("iteration %d: expected no command while already ACTIVE, got %s", i, *cmd)
		}
		if next != s {
			t.Fatalf("iteration %d: state changed from %+v to %+v", i, s, next)
		}
		s = next
	}
}

func TestDeescalateRequiresConsecutiveSafeSignals(t *testing.T) {
	s := State{Mode: ModeActive}

	// 9 safe, 1 spike, 9 safe: never 10 consecutive.
	risks := append(repeatRisk(0.1, 9), 0.35)
	risks = append(risks, repeatRisk(0.1, 9)...)
	for i, r := range risks {
		var cmd *Command
		s, cmd = Next(s, Reading{Risk: r})
		if cmd != nil {
			t.Fatalf("reading %d: unexpected %s", i, *cmd)
		}
	}
	if s.Mode != ModeActive || s.SafeStreak != 9 {
		t.Fatalf("expected ACTIVE with streak 9, got %+v", s)
	}

	s, cmd := Next(s, Reading{Risk: 0.1})
	if cmd == nil || *cmd != CommandDeescalate {
		t.Fatalf("expected DEESCALATE on 10th consecutive safe signal, got %v", cmd)
	}
	if s != InitialState() {
		t.Errorf("expected initial state after deescalation, got %+v", s)
	}
}

func TestFullCycle(t *testing.T) {
	s := InitialState()
	var got []Command

	risks := append([]float64{0.2, 0.8, 0.9}, repeatRisk(0.05, 10)...)
	risks = append(risks, 0.1, 0.71)
	for _, r := range risks {
		var cmd *Command
		s, cmd = Next(s, Reading{Risk: r})
		if cmd != nil {
			got = append(got, *cmd)
		}
	}

	want := []Command{CommandEscalate, CommandDeescalate, CommandEscalate}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if s.Mode != ModeActive {
		t.Errorf("expected ACTIVE at end, got %s", s.Mode)
	}
}

func TestStreakOnlyNonzeroWhileActive(t *testing.T) {
	s := InitialState()
	risks := []float64{0.1, 0.9, 0.1, 0.1, 0.5, 0.1, 0.2, 0.25, 0.0, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	for i, r := range risks {
		s, _ = Next(s, Reading{Risk: r})
		if s.Mode == ModePassive && s.SafeStreak != 0 {
			t.Fatalf("reading %d: PASSIVE with streak %d", i, s.SafeStreak)
		}
	}
}

func TestNewController(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(start)
	if c.State() != InitialState() {
		t.Errorf("expected initial state, got %+v", c.State())
	}
	if c.Counts() != (Counts{}) {
		t.Errorf("expected zero counts, got %+v", c.Counts())
	}
	if !c.lastHeartbeat.Equal(start) {
		t.Errorf("expected lastHeartbeat %v, got %v", start, c.lastHeartbeat)
	}
}

func TestControllerProcessEvents(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(start)

	if e := c.Process(Reading{Risk: 0.2}, start); e != nil {
		t.Fatalf("expected no event, got %+v", e)
	}

	t1 := start.Add(time.Second)
	r := Reading{Temperature: 88.5, Risk: 0.92, DeviceMode: "NORMAL"}
	e := c.Process(r, t1)
	if e == nil {
		t.Fatal("expected escalation event")
	}
	if e.Command != CommandEscalate {
		t.Errorf("expected ESCALATE, got %s", e.Command)
	}
	if e.From != ModePassive || e.To != ModeActive {
		t.Errorf("expected PASSIVE->ACTIVE, got %s->%s", e.From, e.To)
	}
	if e.Reading != r {
		t.Errorf("expected reading %+v, got %+v", r, e.Reading)
	}
	if !e.Timestamp.Equal(t1) {
		t.Errorf("unexpected timestamp: %v", e.Timestamp)
	}

	var last *Event
	for i := 0; i < DebounceCount; i++ {
		last = c.Process(Reading{Risk: 0.1}, t1.Add(time.Duration(i+1)*time.Second))
		if i < DebounceCount-1 && last != nil {
			t.Fatalf("safe signal %d: unexpected event %+v", i+1, last)
		}
	}
	if last == nil || last.Command != CommandDeescalate {
		t.Fatalf("expected DEESCALATE event, got %+v", last)
	}
	if last.From != ModeActive || last.To != ModePassive {
		t.Errorf("expected ACTIVE->PASSIVE, got %s->%s", last.From, last.To)
	}

	counts := c.Counts()
	want := Counts{Readings: 2 + DebounceCount, Escalations: 1, Deescalations: 1}
	if counts != want {
		t.Errorf("counts: got %+v, want %+v", counts, want)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(start)

	if hb := c.CheckHeartbeat(start.Add(15*time.Minute), 0); hb != nil {
		t.Error("should not return heartbeat when interval is 0 (disabled)")
	}
	if hb := c.CheckHeartbeat(start.Add(15*time.Minute), -time.Minute); hb != nil {
		t.Error("should not return heartbeat when interval is negative")
	}
}

func TestCheckHeartbeatInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(start)
	c.Process(Reading{Risk: 0.9}, start)

	if hb := c.CheckHeartbeat(start.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before interval")
	}

	t1 := start.Add(15 * time.Minute)
	hb := c.CheckHeartbeat(t1, 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat at interval")
	}
	if !hb.Timestamp.Equal(t1) {
		t.Errorf("expected timestamp %v, got %v", t1, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
	if hb.Counts.Escalations != 1 || hb.Counts.Readings != 1 {
		t.Errorf("unexpected counts: %+v", hb.Counts)
	}

	if hb := c.CheckHeartbeat(t1.Add(time.Second), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat immediately after previous")
	}
	if hb := c.CheckHeartbeat(t1.Add(15*time.Minute), 15*time.Minute); hb == nil {
		t.Error("should return second heartbeat")
	}
}

func repeatRisk(risk float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = risk
	}
	return out
}
