// Command bot is the companion trivia bot described in spec.md section 6: an
// ordinary IRC client that exercises the server but is not part of it.
package main

import (
	"bufio"
	"log"
	"os"
)

func main() {
	log.SetFlags(0)

	a, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	lines, err := readLines("trivia.txt")
	if err != nil {
		log.Fatal(err)
	}

	b := newBot(a.Password, lines)
	if err := b.run("127.0.0.1:" + a.Port); err != nil {
		log.Fatal(err)
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
