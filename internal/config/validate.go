// Catalogus - Anime Catalog Synchronization Engine
// Copyright 2026 H. Koizumi (hoshiko-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hoshiko-dev/catalogus

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; it is stateless and safe
// for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is complete and coherent.
// Struct-tag rules run first, then cross-field rules the tags can't
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid config value for %s (rule %q)", f.Namespace(), f.Tag())
		}
		return err
	}

	if c.AniList.LowPriorityThreshold >= c.AniList.RateLimit {
		return fmt.Errorf(
			"anilist.low_priority_threshold (%d) must be below anilist.rate_limit (%d)",
			c.AniList.LowPriorityThreshold, c.AniList.RateLimit,
		)
	}

	return nil
}
