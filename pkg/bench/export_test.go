// SPDX-License-Identifier: Apache-2.0

package bench

const MaxRemoveAttempts = maxRemoveAttempts

var RemoveScratch = removeScratch
