package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// testBotLines is the text the virtual client types, one keystroke per
// tick, then erases and starts over.
var testBotLines = []string{
	"// typed by the test bot\n",
	"package main\n",
	"func main() {}\n",
}

// RunTestBot drives a virtual in-process client that enters the room and
// types into a scratch file, one rune per tick. It exercises the whole
// handler path — predict-shift, rope mutation, same-file fan-out — so real
// clients can be tested against live traffic without a second editor.
func RunTestBot(ctx context.Context, room *Room, name string) {
	addr := "testbot:" + name
	snd := room.addClient(addr)
	ch := &channel{conn: &connection{addr: addr}, room: room}

	// Drain the bot's own inbox so broadcasts to it never pile up.
	go func() {
		for range snd.ch {
		}
	}()

	defer func() {
		room.removeClient(addr)
		logrus.Infof("[testbot] %q disconnected", name)
	}()

	botRoot := room.Path() // the bot's "client" root is the room root itself
	scratch := botRoot + name + ".txt"

	dispatch(ch, []byte(fmt.Sprintf(`{"method":"init","path":%q}`, botRoot)))
	dispatch(ch, []byte(fmt.Sprintf(`{"method":"room::enter","username":%q}`, name)))
	dispatch(ch, []byte(fmt.Sprintf(`{"method":"room::update_client","path":%q,"point":0}`, scratch)))
	logrus.Infof("[testbot] %q entered, typing into %s", name, scratch)

	script := []rune{}
	for _, line := range testBotLines {
		script = append(script, []rune(line)...)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if pos == len(script) {
			// Wipe the scratch buffer and start the script over.
			dispatch(ch, []byte(fmt.Sprintf(
				`{"method":"buffer::update","path":%q,"add_or_delete":"delete","beg":0,"end":%d,"contents":""}`,
				scratch, pos)))
			pos = 0
			continue
		}

		dispatch(ch, []byte(fmt.Sprintf(
			`{"method":"buffer::update","path":%q,"add_or_delete":"add","beg":%d,"end":%d,"contents":%q}`,
			scratch, pos, pos+1, string(script[pos]))))
		pos++
	}
}
