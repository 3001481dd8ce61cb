/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

type ReusedMessage string

const (
	FailedReadFromConnection ReusedMessage = "Failed to read from connection"
	FailedDecodePacket       ReusedMessage = "Failed to decode packet"
	FailedHandlePacket       ReusedMessage = "Failed to handle packet"
	FailedSendResponse       ReusedMessage = "Failed to send response"
	ChannelClosed            ReusedMessage = "Network channel closed"
)
