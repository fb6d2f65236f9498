package main

import (
	"fmt"
	"os"
)

type args struct {
	Port     string
	Password string
}

func getArgs() (*args, error) {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s <port> [password]\n", os.Args[0])
		return nil, fmt.Errorf("wrong number of arguments")
	}

	a := &args{Port: os.Args[1]}
	if len(os.Args) == 3 {
		a.Password = os.Args[2]
	}
	return a, nil
}
