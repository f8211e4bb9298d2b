package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"automax/internal/config"
	jwtsvc "automax/internal/pkg/jwt"
)

// issue_token prints a session token for a user id, for local testing of
// the upload API. Use it as a bearer token or as the sessionid cookie.
func main() {
	userID := flag.Int64("user", 0, "user id the token is issued for")
	flag.Parse()

	if *userID <= 0 {
		logrus.Fatal("-user must be a positive id")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}

	token, err := jwtsvc.New(cfg.SecretKey, cfg.SessionTTL).GenerateToken(*userID)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Println(token)
}
