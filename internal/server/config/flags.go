package config

import (
	"flag"
	"os"
	"time"

	"github.com/winds-n/member-api/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3003")
//	-m string   MongoDB URI
//	-n string   MongoDB database name
//	-s string   digest salt
//	-v int      email validation-key validity, hours
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config flags handled by
// the JSON layer.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-n", "-s", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "MongoDB database name")
	fs.StringVar(&config.DigestSalt, "s", config.DigestSalt, "digest salt")

	emailValidityHours := fs.Int("v", int(config.EmailValidityDuration.Hours()), "email_validity_duration (in hours)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.EmailValidityDuration = time.Duration(*emailValidityHours) * time.Hour
}
