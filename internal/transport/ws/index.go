package ws

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomz197/tileworld/internal/protocol"
)

//go:embed index.html
var htmlPage string

// landingPage fills the connection details into the embedded page once.
func landingPage(sshHost, sshPort string) string {
	var commands strings.Builder
	for _, name := range protocol.Names() {
		usage, _ := protocol.Usage(name)
		commands.WriteString(usage)
		commands.WriteByte('\n')
	}
	return strings.NewReplacer(
		"{{.SSHHost}}", sshHost,
		"{{.SSHPort}}", sshPort,
		"{{.Commands}}", strings.TrimRight(commands.String(), "\n"),
	).Replace(htmlPage)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, s.page)
}
