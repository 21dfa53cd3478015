// Command fakegate serves an in-memory FortiGate address API for dry runs.
// Point a firewall inventory entry at it with "ip": "http://127.0.0.1:8443".
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/fortigate/fortigatetest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "127.0.0.1:8443", "listen address")
	token := pflag.String("token", "fakegate-token", "accepted API token")
	vdoms := pflag.StringSlice("vdom", []string{"root"}, "VDOMs to host; repeat or comma separate")
	certFile := pflag.String("tls-cert", "", "TLS certificate file; plain HTTP when empty")
	keyFile := pflag.String("tls-key", "", "TLS key file")
	pflag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	fake := fortigatetest.New(*token, *vdoms...)
	server := &http.Server{
		Addr:         *addr,
		Handler:      fake.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		var err error
		if *certFile != "" {
			log.WithFields(logrus.Fields{"addr": *addr, "vdoms": *vdoms}).Info("fakegate listening on https")
			err = server.ListenAndServeTLS(*certFile, *keyFile)
		} else {
			log.WithFields(logrus.Fields{"addr": *addr, "vdoms": *vdoms}).Info("fakegate listening on http")
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
}
