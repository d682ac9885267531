/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"invest-bot-go/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// WalletsFile is the layout of the wallet pool file:
//
//	wallets:
//	  btc:
//	    - bc1q...
//	  usdt:
//	    - TXyz...
type WalletsFile struct {
	Wallets map[string][]string `yaml:"wallets"`
}

// loadWalletPools reads the pool file. A missing file yields empty pools so
// that environment overrides alone can configure every kind.
func loadWalletPools(walletsFile string) (map[models.CryptoKind][]string, error) {
	pools := make(map[models.CryptoKind][]string)

	var walletsPath string
	if filepath.IsAbs(walletsFile) {
		walletsPath = walletsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		walletsPath = filepath.Join(wd, walletsFile)
	}

	data, err := os.ReadFile(walletsPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.L().Info("Wallet pool file not found, relying on environment", zap.String("file", walletsPath))
		return pools, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", walletsFile, err)
	}

	var file WalletsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", walletsFile, err)
	}

	for name, addresses := range file.Wallets {
		kind, err := models.ParseCryptoKind(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", walletsFile, err)
		}
		for i, address := range addresses {
			address = strings.TrimSpace(address)
			if address == "" {
				return nil, fmt.Errorf("%s: %s wallet at index %d is empty", walletsFile, name, i)
			}
			pools[kind] = append(pools[kind], address)
		}
	}
	return pools, nil
}
