package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/air-relay/pkg/adb"
	"github.com/air-relay/pkg/logging"
)

func (s *Server) adbError(w http.ResponseWriter, op string, err error) {
	logging.Logf("[adb] %s failed: %v", op, err)
	switch {
	case errors.Is(err, adb.ErrTimeout):
		s.collector.RecordADBCommand("timeout")
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, adb.ErrNotFound):
		s.collector.RecordADBCommand("not_found")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.collector.RecordADBCommand("error")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func intParam(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	return v, err == nil
}

func (s *Server) handleADBDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.adb.Devices(r.Context())
	if err != nil {
		s.adbError(w, "devices", err)
		return
	}

	s.collector.RecordADBCommand("ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (s *Server) handleADBForward(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	localPort, okLocal := intParam(r, "local_port")
	remotePort, okRemote := intParam(r, "remote_port")
	if deviceID == "" || !okLocal || !okRemote {
		writeError(w, http.StatusBadRequest, "device_id, local_port and remote_port are required")
		return
	}

	if err := s.adb.Forward(r.Context(), deviceID, localPort, remotePort); err != nil {
		s.adbError(w, "forward", err)
		return
	}

	s.collector.RecordADBCommand("ok")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleADBReverse(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	remotePort, okRemote := intParam(r, "remote_port")
	localPort, okLocal := intParam(r, "local_port")
	if deviceID == "" || !okRemote || !okLocal {
		writeError(w, http.StatusBadRequest, "device_id, remote_port and local_port are required")
		return
	}

	if err := s.adb.Reverse(r.Context(), deviceID, remotePort, localPort); err != nil {
		s.adbError(w, "reverse", err)
		return
	}

	s.collector.RecordADBCommand("ok")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleADBScreen(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	path, err := s.adb.ScreenCapture(r.Context(), deviceID)
	if err != nil {
		s.adbError(w, "screen capture", err)
		return
	}

	s.collector.RecordADBCommand("ok")
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleADBShell(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	command := r.URL.Query().Get("command")
	if deviceID == "" || command == "" {
		writeError(w, http.StatusBadRequest, "device_id and command are required")
		return
	}

	result, err := s.adb.Shell(r.Context(), deviceID, command)
	if err != nil {
		s.adbError(w, "shell", err)
		return
	}

	s.collector.RecordADBCommand("ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stdout": result.Stdout,
		"stderr": result.Stderr,
		"code":   result.ExitCode,
	})
}
