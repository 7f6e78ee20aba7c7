package postgres

import (
	"strconv"
	"strings"
)

// placeholder returns a positional placeholder for PostgreSQL ($n)
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// placeholders returns $1..$n
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}
