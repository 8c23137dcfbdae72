// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

// Command fieldvinectl is a terminal client for the Fieldvine API.
//
// It drives the same session SDK the web and mobile clients use, with the
// credential record persisted under the user's home directory.
//
// # Usage
//
//	fieldvinectl login <email>                 request a login code
//	fieldvinectl signup <email>                request a signup code
//	fieldvinectl verify-login <email> <code>   exchange the code for a session
//	fieldvinectl verify-signup <email> <code>  complete a signup (prompts for profile flags)
//	fieldvinectl whoami                        show the current session
//	fieldvinectl convert-estimate <file>       convert an approved estimate to a job plan
//	fieldvinectl logout                        revoke and clear the session
//
// The API base URL comes from -server or the FIELDVINE_SERVER environment
// variable.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fieldvine/fieldvine/pkg/apiclient"
	"github.com/fieldvine/fieldvine/pkg/authclient"
	"github.com/fieldvine/fieldvine/pkg/credstore"
	"github.com/fieldvine/fieldvine/pkg/session"
)

const defaultServer = "http://localhost:8080"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("fieldvinectl", flag.ExitOnError)
	server := flags.String("server", envOr("FIELDVINE_SERVER", defaultServer), "API base URL")
	record := flags.String("session-file", "", "path to the session record (default ~/.fieldvine/session.json)")
	firstName := flags.String("first-name", "", "first name (verify-signup)")
	lastName := flags.String("last-name", "", "last name (verify-signup)")
	accountName := flags.String("account-name", "", "business name (verify-signup)")
	businessType := flags.String("business-type", "other", "business type (verify-signup)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("missing command")
	}

	store, err := openStore(*record)
	if err != nil {
		return err
	}
	gateway := authclient.New(*server, store)
	manager := session.NewManager(gateway, store)
	manager.Hydrate()

	ctx := context.Background()
	command, rest := flags.Arg(0), flags.Args()[1:]

	switch command {
	case "login":
		if len(rest) != 1 {
			return fmt.Errorf("usage: fieldvinectl login <email>")
		}
		return report(manager.SendLoginCode(ctx, rest[0]))

	case "signup":
		if len(rest) != 1 {
			return fmt.Errorf("usage: fieldvinectl signup <email>")
		}
		return report(manager.SendSignupCode(ctx, rest[0]))

	case "verify-login":
		if len(rest) != 2 {
			return fmt.Errorf("usage: fieldvinectl verify-login <email> <code>")
		}
		if err := report(manager.VerifyLoginCode(ctx, rest[0], rest[1])); err != nil {
			return err
		}
		return printIdentity(manager.Snapshot())

	case "verify-signup":
		if len(rest) != 2 {
			return fmt.Errorf("usage: fieldvinectl verify-signup <email> <code>")
		}
		if *firstName == "" || *lastName == "" || *accountName == "" {
			return fmt.Errorf("verify-signup requires -first-name, -last-name, and -account-name")
		}
		result := manager.CompleteSignup(ctx, rest[0], rest[1], authclient.SignupFields{
			FirstName:    *firstName,
			LastName:     *lastName,
			AccountName:  *accountName,
			BusinessType: *businessType,
		})
		if err := report(result); err != nil {
			return err
		}
		return printIdentity(manager.Snapshot())

	case "whoami":
		return printIdentity(manager.Snapshot())

	case "convert-estimate":
		if len(rest) != 1 {
			return fmt.Errorf("usage: fieldvinectl convert-estimate <estimate.json>")
		}
		return convertEstimate(ctx, *server, store, gateway, rest[0])

	case "logout":
		if err := gateway.Revoke(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// report prints the operation result and fails the process on rejection.
func report(result session.Result) error {
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	fmt.Println(result.Message)
	return nil
}

// printIdentity shows the authenticated user, or reports the logged-out state.
func printIdentity(snapshot session.Snapshot) error {
	if !snapshot.IsAuthenticated {
		fmt.Println("Not logged in")
		return nil
	}
	fmt.Printf("%s %s <%s>\n", snapshot.User.FirstName, snapshot.User.LastName, snapshot.User.Email)
	fmt.Printf("account: %s (%s, %s plan)\n", snapshot.Account.Name, snapshot.Account.BusinessType, snapshot.Account.SubscriptionPlan)
	fmt.Printf("role: %s\n", snapshot.User.Role)
	return nil
}

// convertEstimate posts an estimate document to the job-plan conversion
// endpoint through the authenticated request client, so an expired access
// token is refreshed transparently mid-command.
func convertEstimate(ctx context.Context, server string, store credstore.Store, refresher apiclient.TokenRefresher, path string) error {
	document, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading estimate: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		server+"/api/v1/fieldops/convert-estimate", bytes.NewReader(document))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	client := apiclient.New(store, refresher)
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var reply struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		JobPlan json.RawMessage `json:"job_plan"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("unexpected response from server: %w", err)
	}
	if !reply.Success {
		return fmt.Errorf("%s", reply.Message)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, reply.JobPlan, "", "  "); err != nil {
		return err
	}
	fmt.Println(reply.Message)
	fmt.Println(pretty.String())
	return nil
}

// openStore opens the file-backed credential record.
func openStore(path string) (credstore.Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, ".fieldvine", "session.json")
	}
	return credstore.NewFileStore(path)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
