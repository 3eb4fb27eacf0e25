// admintoken выпускает JWT оператора для /admin API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iurnickita/topuprouter/internal/auth"
	"github.com/iurnickita/topuprouter/internal/auth/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	operator := flag.String("operator", "", "operator name")
	secret := flag.String("secret", os.Getenv("ADMIN_SECRET"), "operator jwt secret")
	ttl := flag.Duration("ttl", 24*time.Hour, "token ttl")
	flag.Parse()

	if *operator == "" {
		return fmt.Errorf("operator is required")
	}

	token, err := auth.NewAuth(config.Config{SecretKey: *secret, TokenTTL: *ttl}).BuildToken(*operator)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
