// cmd/ctdb/main.go
//
// ctdb CLI - a thin example program exercising the public API end to
// end: put/get/del/iter/vacuum subcommands operating on one database
// file. This is an external collaborator, not part of the engine's
// tested surface.
//
// Usage:
//
//	ctdb <database-file> put <key> <value>
//	ctdb <database-file> get <key>
//	ctdb <database-file> del <key>
//	ctdb <database-file> iter [prefix]
//	ctdb <database-file> vacuum <new-database-file>
package main

import (
	"errors"
	"fmt"
	"os"

	"ctdb"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	path, cmd, args := os.Args[1], os.Args[2], os.Args[3:]

	if err := run(path, cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "ctdb: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ctdb <file> {put|get|del|iter|vacuum} ...")
}

func run(path, cmd string, args []string) error {
	db, err := ctdb.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	switch cmd {
	case "put":
		return runPut(db, args)
	case "get":
		return runGet(db, args)
	case "del":
		return runDel(db, args)
	case "iter":
		return runIter(db, args)
	case "vacuum":
		return runVacuum(db, args)
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func runPut(db *ctdb.Database, args []string) error {
	if len(args) != 2 {
		return errors.New("put requires <key> <value>")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := tx.Put([]byte(args[0]), []byte(args[1])); err != nil {
		return err
	}
	return tx.Commit()
}

func runGet(db *ctdb.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("get requires <key>")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	value, err := tx.GetValue([]byte(args[0]))
	if err != nil {
		return err
	}
	fmt.Println(string(value))
	return nil
}

func runDel(db *ctdb.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("del requires <key>")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := tx.Del([]byte(args[0])); err != nil {
		return err
	}
	return tx.Commit()
}

func runIter(db *ctdb.Database, args []string) error {
	var prefix []byte
	if len(args) == 1 {
		prefix = []byte(args[0])
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	results, err := ctdb.Collect(tx, prefix)
	if err != nil {
		return err
	}
	for key, value := range results {
		fmt.Printf("%s=%s\n", key, value)
	}
	return nil
}

func runVacuum(db *ctdb.Database, args []string) error {
	if len(args) != 1 {
		return errors.New("vacuum requires <new-database-file>")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	newDB, err := ctdb.Open(args[0])
	if err != nil {
		return err
	}
	defer newDB.Close()
	return db.Vacuum(tx, newDB)
}
