package api

import (
	"net/http"

	"github.com/dustin/go-humanize"
)

type profileInfo struct {
	Name    string `json:"name"`
	Budget  int64  `json:"budget"`
	Human   string `json:"human"`
	Default bool   `json:"default,omitempty"`
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := s.orchestrator.Profiles()
	def := s.orchestrator.DefaultProfile()

	list := make([]profileInfo, 0, len(profiles))
	for _, name := range profiles.Names() {
		budget := profiles[name]
		list = append(list, profileInfo{
			Name:    name,
			Budget:  budget,
			Human:   humanize.IBytes(uint64(budget)),
			Default: name == def,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": list})
}
