// Command devtoken mints a bearer token for local testing against the api.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/utils"
)

func main() {
	_ = godotenv.Load()

	role := flag.String("role", "client", "client, provider, inspector or admin")
	id := flag.String("id", "", "user id (random when empty)")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	if _, ok := models.ParseRole(*role); !ok {
		log.WithField("role", *role).Fatal("unknown role")
	}
	if *id == "" {
		*id = uuid.NewString()
	} else if _, err := uuid.Parse(*id); err != nil {
		log.WithError(err).Fatal("bad id")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	tok, err := utils.SignJWT(secret, *id, *role, *ttl)
	if err != nil {
		log.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok)
}
