package config

import (
	"fmt"
	"strconv"
	"strings"
)

// intList è un flag.Value per liste di interi separate da virgola
type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, value := range *l {
		parts[i] = strconv.Itoa(value)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(raw string) error {
	*l = (*l)[:0]
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("scelta non valida %q: %w", part, err)
		}
		*l = append(*l, value)
	}
	return nil
}
