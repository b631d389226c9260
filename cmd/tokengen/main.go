// Command tokengen mints credentials for load tests. Each line of the output
// is "user_id,token"; the user ids are random and do not exist in any
// directory, so only routes that stop at credential verification accept them.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/baechuer/miniapp-auth/internal/config"
	"github.com/baechuer/miniapp-auth/internal/infrastructure/security"
)

func generate(w io.Writer, secret string, n int) error {
	issuer := security.NewJWTIssuer(secret)
	cw := csv.NewWriter(w)

	for i := 0; i < n; i++ {
		uid := uuid.NewString()
		cred, err := issuer.Issue(uid)
		if err != nil {
			return fmt.Errorf("issue token %d: %w", i, err)
		}
		if err := cw.Write([]string{uid, cred.Token}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func main() {
	config.LoadDotEnv()

	var (
		n      = flag.Int("n", 1000, "number of tokens")
		out    = flag.String("out", "tokens.csv", "output file, - for stdout")
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
	)
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := generate(w, *secret, *n); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *out != "-" {
		fmt.Fprintf(os.Stderr, "wrote %d tokens to %s\n", *n, *out)
	}
}
