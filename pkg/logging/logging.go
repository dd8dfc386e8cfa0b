package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

var (
	serverID     string
	serverIDOnce sync.Once

	// Async logging channel and worker
	logChan   chan string
	logWorker sync.Once
	logWg     sync.WaitGroup
	logMu     sync.Mutex
)

// initLogWorker starts the async log worker goroutine
func initLogWorker() {
	logMu.Lock()
	defer logMu.Unlock()

	logWorker.Do(func() {
		// Buffered so callers never block on slow log output
		logChan = make(chan string, 1000)

		logWg.Add(1)
		go func() {
			defer logWg.Done()
			for msg := range logChan {
				log.Print(msg)
			}
		}()
	})
}

// GetServerID returns the unique server ID for this instance
func GetServerID() string {
	serverIDOnce.Do(func() {
		// Try SERVER_ID first (allows a fixed ID), then POD_NAME, then HOSTNAME
		serverID = os.Getenv("SERVER_ID")
		if serverID == "" {
			serverID = os.Getenv("POD_NAME")
		}
		if serverID == "" {
			serverID = os.Getenv("HOSTNAME")
		}
		if serverID == "" {
			hostname, _ := os.Hostname()
			if hostname != "" {
				// Use last 8 chars of hostname as fallback
				if len(hostname) > 8 {
					serverID = hostname[len(hostname)-8:]
				} else {
					serverID = hostname
				}
			} else {
				serverID = "unknown"
			}
		}
	})
	return serverID
}

// Logf logs a formatted message with server ID prefix (async, non-blocking)
func Logf(format string, v ...interface{}) {
	initLogWorker()
	msg := fmt.Sprintf(format, v...)
	logMsg := fmt.Sprintf("[server=%s] %s", GetServerID(), msg)

	// Non-blocking send: if the channel is full, write synchronously instead
	select {
	case logChan <- logMsg:
	default:
		log.Print(logMsg)
	}
}

// Log logs a message with server ID prefix (async, non-blocking)
func Log(v ...interface{}) {
	initLogWorker()
	msg := fmt.Sprint(v...)
	logMsg := fmt.Sprintf("[server=%s] %s", GetServerID(), msg)

	select {
	case logChan <- logMsg:
	default:
		log.Print(logMsg)
	}
}

// Fatalf logs a fatal error with server ID prefix and exits (synchronous)
func Fatalf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	log.Fatalf("[server=%s] %s", GetServerID(), msg)
}

// Flush waits for all pending log messages to be written
func Flush() {
	logMu.Lock()
	defer logMu.Unlock()

	if logChan != nil {
		close(logChan)
		logWg.Wait()
		logChan = nil
		logWorker = sync.Once{}
	}
}
