// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package config

import (
	"github.com/mendersoftware/go-lib-micro/config"
)

const (
	// SettingListen is the config key for the listen address
	SettingListen = "listen"
	// SettingListenDefault is the default value for the listen address
	SettingListenDefault = ":8000"

	// SettingDebugLog is the config key for the turning on the debug log
	SettingDebugLog = "debug_log"
	// SettingDebugLogDefault is the default value for the debug log enabling
	SettingDebugLogDefault = false

	// SettingDataDir is the config key for the registry directory
	SettingDataDir = "data_dir"
	// SettingDataDirDefault is the default value for the registry directory
	SettingDataDirDefault = "/data"

	// SettingImagesDir is the config key for the iSCSI backing files directory
	SettingImagesDir = "images_dir"
	// SettingImagesDirDefault is the default value for the images directory
	SettingImagesDirDefault = "/data/iscsi/images"

	// SettingTFTPDir is the config key for the TFTP root
	SettingTFTPDir = "tftp_dir"
	// SettingTFTPDirDefault is the default value for the TFTP root
	SettingTFTPDirDefault = "/data/tftp"

	// SettingHTTPDir is the config key for the directory served to iPXE
	SettingHTTPDir = "http_dir"
	// SettingHTTPDirDefault is the default value for the HTTP boot directory
	SettingHTTPDirDefault = "/data/http"

	// SettingCatalogPath is the config key for the installer catalog file
	SettingCatalogPath = "catalog_path"
	// SettingCatalogPathDefault is the default value for the catalog path
	SettingCatalogPathDefault = "/data/catalog.yaml"

	// SettingInstallersBaseURL is the config key for the URL catalog
	// installer paths are relative to
	SettingInstallersBaseURL = "installers_base_url"
	// SettingInstallersBaseURLDefault is the default installers base URL
	SettingInstallersBaseURLDefault = "http://192.168.1.50:8000/installers"

	// SettingBootServerIP is the config key for the address clients boot from
	SettingBootServerIP = "boot_server_ip"
	// SettingBootServerIPDefault is the default boot server address
	SettingBootServerIPDefault = "192.168.1.50"

	// SettingBootAPIURL is the config key for the boot API base URL that
	// rendered scripts chain back to
	SettingBootAPIURL = "boot_api_url"
	// SettingBootAPIURLDefault is the default boot API base URL
	SettingBootAPIURLDefault = "http://192.168.1.50:8000/api/boot/v1"

	// SettingIQNPrefix is the config key for the iSCSI qualified name prefix
	SettingIQNPrefix = "iqn_prefix"
	// SettingIQNPrefixDefault is the default iSCSI qualified name prefix
	SettingIQNPrefixDefault = "iqn.2024-01.local.netboot"

	// SettingTgtadmPath is the config key for the tgtadm binary
	SettingTgtadmPath = "tgtadm_path"
	// SettingTgtadmPathDefault is the default tgtadm binary
	SettingTgtadmPathDefault = "tgtadm"

	// SettingISCSITimeout is the config key for the per-call target daemon
	// timeout in seconds
	SettingISCSITimeout = "iscsi_timeout_seconds"
	// SettingISCSITimeoutDefault is the default target daemon timeout
	SettingISCSITimeoutDefault = 10

	// SettingISCSIRetries is the config key for the number of attempts made
	// against the target daemon before marking drift
	SettingISCSIRetries = "iscsi_retries"
	// SettingISCSIRetriesDefault is the default number of attempts
	SettingISCSIRetriesDefault = 3

	// SettingReconcileSweepInterval is the config key for the safety sweep
	// interval in seconds
	SettingReconcileSweepInterval = "reconcile_sweep_interval_seconds"
	// SettingReconcileSweepIntervalDefault is the default sweep interval
	SettingReconcileSweepIntervalDefault = 900

	// SettingNoImagePolicy is the config key for the check-in action of an
	// enabled device without an image: "show_menu" or "boot_default"
	SettingNoImagePolicy = "no_image_policy"
	// SettingNoImagePolicyDefault is the default no-image policy
	SettingNoImagePolicyDefault = "show_menu"

	// SettingBootLogCapacity is the config key for the boot log ring size
	SettingBootLogCapacity = "bootlog_capacity"
	// SettingBootLogCapacityDefault is the default boot log ring size
	SettingBootLogCapacityDefault = 500

	// SettingBootLogFlushInterval is the config key for how often the file
	// boot log is flushed to disk, in seconds
	SettingBootLogFlushInterval = "bootlog_flush_interval_seconds"
	// SettingBootLogFlushIntervalDefault is the default flush interval
	SettingBootLogFlushIntervalDefault = 5

	// SettingBootLogBackend is the config key selecting "file" or "mongo"
	SettingBootLogBackend = "bootlog_backend"
	// SettingBootLogBackendDefault is the default boot log backend
	SettingBootLogBackendDefault = "file"

	// SettingMongo is the config key for the mongo URL
	SettingMongo = "mongo_url"
	// SettingMongoDefault is the default value for the mongo URL
	SettingMongoDefault = "mongodb://localhost:27017"

	// SettingDbName is the config key for the mongo database name
	SettingDbName = "mongo_dbname"
	// SettingDbNameDefault is the default value for the mongo database name
	SettingDbNameDefault = "netboot"

	// SettingDbSSL is the config key for the mongo SSL setting
	SettingDbSSL = "mongo_ssl"
	// SettingDbSSLDefault is the default value for the mongo SSL setting
	SettingDbSSLDefault = false

	// SettingDbSSLSkipVerify is the config key for the mongo SSL skip verify setting
	SettingDbSSLSkipVerify = "mongo_ssl_skipverify"
	// SettingDbSSLSkipVerifyDefault is the default value for the mongo SSL skip verify setting
	SettingDbSSLSkipVerifyDefault = false

	// SettingDbUsername is the config key for the mongo username
	SettingDbUsername = "mongo_username"

	// SettingDbPassword is the config key for the mongo password
	SettingDbPassword = "mongo_password"

	// SettingNatsURI is the config key for the nats uri; empty disables
	// event publishing
	SettingNatsURI = "nats_uri"
	// SettingNatsURIDefault is the default value for the nats uri
	SettingNatsURIDefault = ""

	// SettingDefaultKernelURL is the config key for the kernel URL seeded
	// into the "default" kernel set
	SettingDefaultKernelURL = "default_kernel_url"
	// SettingDefaultInitramfsURL is the config key for the initramfs URL
	// seeded into the "default" kernel set
	SettingDefaultInitramfsURL = "default_initramfs_url"

	// SettingTelemetryStallThreshold is the config key for the number of
	// seconds without progress after which an install session is stalled
	SettingTelemetryStallThreshold = "telemetry_stall_threshold_seconds"
	// SettingTelemetryStallThresholdDefault is the default stall threshold
	SettingTelemetryStallThresholdDefault = 300

	// SettingTelemetryActiveTimeout is the config key for the number of
	// seconds a session stays active after its last sample
	SettingTelemetryActiveTimeout = "telemetry_active_timeout_seconds"
	// SettingTelemetryActiveTimeoutDefault is the default active timeout
	SettingTelemetryActiveTimeoutDefault = 3600

	// SettingAllowedOrigins is the config key for the origins accepted by
	// the telemetry websocket; empty accepts any origin
	SettingAllowedOrigins = "allowed_origins"
)

var (
	// Defaults are the default configuration settings
	Defaults = []config.Default{
		{Key: SettingListen, Value: SettingListenDefault},
		{Key: SettingDebugLog, Value: SettingDebugLogDefault},
		{Key: SettingDataDir, Value: SettingDataDirDefault},
		{Key: SettingImagesDir, Value: SettingImagesDirDefault},
		{Key: SettingTFTPDir, Value: SettingTFTPDirDefault},
		{Key: SettingHTTPDir, Value: SettingHTTPDirDefault},
		{Key: SettingCatalogPath, Value: SettingCatalogPathDefault},
		{Key: SettingInstallersBaseURL, Value: SettingInstallersBaseURLDefault},
		{Key: SettingBootServerIP, Value: SettingBootServerIPDefault},
		{Key: SettingBootAPIURL, Value: SettingBootAPIURLDefault},
		{Key: SettingIQNPrefix, Value: SettingIQNPrefixDefault},
		{Key: SettingTgtadmPath, Value: SettingTgtadmPathDefault},
		{Key: SettingISCSITimeout, Value: SettingISCSITimeoutDefault},
		{Key: SettingISCSIRetries, Value: SettingISCSIRetriesDefault},
		{Key: SettingReconcileSweepInterval, Value: SettingReconcileSweepIntervalDefault},
		{Key: SettingNoImagePolicy, Value: SettingNoImagePolicyDefault},
		{Key: SettingBootLogCapacity, Value: SettingBootLogCapacityDefault},
		{Key: SettingBootLogFlushInterval, Value: SettingBootLogFlushIntervalDefault},
		{Key: SettingBootLogBackend, Value: SettingBootLogBackendDefault},
		{Key: SettingMongo, Value: SettingMongoDefault},
		{Key: SettingDbName, Value: SettingDbNameDefault},
		{Key: SettingDbSSL, Value: SettingDbSSLDefault},
		{Key: SettingDbSSLSkipVerify, Value: SettingDbSSLSkipVerifyDefault},
		{Key: SettingNatsURI, Value: SettingNatsURIDefault},
		{Key: SettingTelemetryStallThreshold, Value: SettingTelemetryStallThresholdDefault},
		{Key: SettingTelemetryActiveTimeout, Value: SettingTelemetryActiveTimeoutDefault},
	}
)
