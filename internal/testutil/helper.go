package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// helperEnv marks a test binary that was re-executed as a worker.
	helperEnv = "WORKERBRIDGE_TEST_WORKER"

	// helperDeafEnv makes the helper worker run without ever reading stdin.
	helperDeafEnv = "WORKERBRIDGE_TEST_WORKER_DEAF"
)

// IsHelperWorker reports whether the current process should act as the
// helper worker. Call it from TestMain before m.Run.
func IsHelperWorker() bool {
	return os.Getenv(helperEnv) == "1"
}

// RunHelperWorker serves requests on stdin and stdout, then exits the process.
func RunHelperWorker() {
	if os.Getenv(helperDeafEnv) == "1" {
		time.Sleep(time.Hour)
		os.Exit(0)
	}

	os.Exit(serveHelper(os.Stdin, os.Stdout, os.Stderr))
}

// HelperWorkerCommand returns the path of the running test binary.
func HelperWorkerCommand() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}

	return exe
}

// HelperWorkerEnv returns the environment that makes the test binary a worker.
func HelperWorkerEnv() map[string]string {
	return map[string]string{helperEnv: "1"}
}

// HelperDeafWorkerEnv returns the environment for a helper worker that stays
// alive but never reads stdin, so large writes to it block.
func HelperDeafWorkerEnv() map[string]string {
	return map[string]string{helperEnv: "1", helperDeafEnv: "1"}
}

// helperRequest is the payload understood by the helper worker.
//
// Op selects the behavior:
//
//	echo     reply {"echo": <payload>} (default)
//	sleep    wait MS milliseconds, then echo
//	silent   never reply
//	garbage  reply with a line that is not JSON
//	stderr   write Text to stderr, then reply {"ok": true}
//	exit     write a note to stderr and exit with Code
//	big      reply {"data": "<Size bytes>"}
//	split    write the echo reply in two separate writes
type helperRequest struct {
	Op   string `json:"op"`
	MS   int    `json:"ms"`
	Code int    `json:"code"`
	Text string `json:"text"`
	Size int    `json:"size"`
}

type helperEnvelope struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func serveHelper(stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		outMu sync.Mutex
		wg    sync.WaitGroup
	)

	writeLine := func(s string) {
		outMu.Lock()
		defer outMu.Unlock()

		_, _ = io.WriteString(stdout, s+"\n")
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		raw := json.RawMessage(line)
		id := ""

		var env helperEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.ID != "" && env.Payload != nil {
			raw = env.Payload
			id = env.ID
		}

		var req helperRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			writeLine(`{"error":"bad request"}`)

			continue
		}

		reply := func(body string) {
			if id != "" {
				body = fmt.Sprintf(`{"id":%q,"response":%s}`, id, body)
			}

			writeLine(body)
		}

		echo := fmt.Sprintf(`{"echo":%s}`, raw)

		switch req.Op {
		case "sleep":
			// Tagged requests are answered concurrently so replies can
			// overtake each other.
			if id != "" {
				wg.Go(func() {
					time.Sleep(time.Duration(req.MS) * time.Millisecond)
					reply(echo)
				})

				continue
			}

			time.Sleep(time.Duration(req.MS) * time.Millisecond)
			reply(echo)
		case "silent":
		case "garbage":
			writeLine("this is not json")
		case "stderr":
			_, _ = io.WriteString(stderr, req.Text+"\n")

			reply(`{"ok":true}`)
		case "exit":
			_, _ = fmt.Fprintf(stderr, "exiting with code %d\n", req.Code)

			return req.Code
		case "big":
			reply(fmt.Sprintf(`{"data":%q}`, strings.Repeat("x", req.Size)))
		case "split":
			outMu.Lock()

			half := len(echo) / 2
			_, _ = io.WriteString(stdout, echo[:half])

			time.Sleep(20 * time.Millisecond)

			_, _ = io.WriteString(stdout, echo[half:]+"\n")

			outMu.Unlock()
		default:
			reply(echo)
		}
	}

	wg.Wait()

	return 0
}
