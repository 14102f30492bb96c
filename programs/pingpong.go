package programs

import (
	"fmt"

	"github.com/evanphx/tinyos/kernel"
)

// findPeer waits for a process called name to exist.
func findPeer(t *kernel.Task, name string) int {
	for {
		if pid := t.GetPIDByName(name); pid >= 0 {
			return pid
		}

		t.SwitchProcess()
	}
}

// Ping sends a numbered message to pong and waits for the reply, rounds
// times.
func Ping(rounds int) kernel.Body {
	return func(t *kernel.Task) {
		t.L.Info("ping", "pid", t.GetPID())

		pong := findPeer(t, "pong")

		seq := 0
		for i := 0; i < rounds; i++ {
			t.SendMessage(kernel.Message{
				Target: pong,
				Type:   seq,
				Data:   []byte(fmt.Sprintf("message from ping %d", seq)),
			})

			recv := t.WaitForMessage()
			t.L.Info("received", "from", recv.Sender, "type", recv.Type, "data", string(recv.Data))

			seq = recv.Type + 1
		}
	}
}

// Pong answers each message with the next sequence number.
func Pong(rounds int) kernel.Body {
	return func(t *kernel.Task) {
		t.L.Info("pong", "pid", t.GetPID())

		for i := 0; i < rounds; i++ {
			recv := t.WaitForMessage()

			seq := recv.Type + 1

			t.SendMessage(kernel.Message{
				Target: recv.Sender,
				Type:   seq,
				Data:   []byte(fmt.Sprintf("message from pong %d", seq)),
			})
		}
	}
}
