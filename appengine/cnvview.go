// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cnvview serves the CNV view API from App Engine.  Sample files
// are read from the GCS location named by DATA_LOCATION with the bearer
// token of each request.
package cnvview

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/appengine"

	"github.com/googlegenomics/cnvview/api"
	"github.com/googlegenomics/cnvview/sources"
	"github.com/googlegenomics/cnvview/sources/gcs"
)

func init() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	bucket, prefix, err := gcs.ParseLocation(os.Getenv("DATA_LOCATION"))
	if err != nil {
		log.WithError(err).Fatal("DATA_LOCATION must name a gs://bucket/prefix location")
	}

	newSource := func(req *http.Request) (sources.Source, error) {
		client, err := gcs.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
		if err != nil {
			return nil, err
		}
		return gcs.New(client, bucket, prefix), nil
	}

	server := api.NewServer(newSource, api.WithLogger(log))
	if list := os.Getenv("BUCKET_WHITELIST"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)
	http.Handle("/", router)
}
