package ice

import (
	"strings"

	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/config"
)

// HostPlaceholder in an ICE server URL is replaced with the public host of the coordinator.
const HostPlaceholder = "host"

type Replacement struct {
	From string
	To   string
}

// Expand converts the configured ICE servers into the list sent to browsers,
// each {From} placeholder of the URLs is replaced with its To value.
func Expand(iceServers []config.IceServer, replacements ...Replacement) []api.IceServer {
	if len(iceServers) == 0 {
		return nil
	}
	out := make([]api.IceServer, 0, len(iceServers))
	for _, ice := range iceServers {
		url := ice.Urls
		for _, r := range replacements {
			if r.To == "" {
				continue
			}
			url = strings.ReplaceAll(url, "{"+r.From+"}", r.To)
		}
		out = append(out, api.IceServer{Urls: url, Username: ice.Username, Credential: ice.Credential})
	}
	return out
}
